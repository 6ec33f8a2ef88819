package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/db/models"
)

func TestOpenUsesQuietClientConfig(t *testing.T) {
	conn := Open(t)

	require.True(t, conn.Config.Logger != gormlogger.Default, "test databases must not log through the default stdout logger")
	require.True(t, conn.Config.TranslateError)
	require.True(t, conn.Config.SkipDefaultTransaction)

	var sheet models.Sheet
	err := conn.First(&sheet, "id = ?", uuid.New()).Error
	require.True(t, db.IsNotFound(err))
}
