package ratings

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/uninote/uninote-backend/internal/entitlements"
	"github.com/uninote/uninote-backend/internal/purchases"
	"github.com/uninote/uninote-backend/internal/sheets"
	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/db/dbtest"
	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/enums"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

func TestRateRequiresOwnershipAndRecomputesStats(t *testing.T) {
	conn := dbtest.Open(t)
	sheetRepo := sheets.NewRepository(conn)
	gate, err := entitlements.NewGate(purchases.NewRepository(conn), sheetRepo)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), sheetRepo, gate, db.Wrap(conn), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	ctx := context.Background()

	seller := dbtest.SeedSeller(t, conn)
	alice := dbtest.SeedUser(t, conn)
	bob := dbtest.SeedUser(t, conn)
	sheet := dbtest.SeedSheet(t, conn, seller.ID)

	_, err = svc.Rate(ctx, alice.ID, sheet.ID, RateRequest{Score: 5})
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())

	_, err = svc.Rate(ctx, alice.ID, uuid.New(), RateRequest{Score: 5})
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	dbtest.SeedPurchase(t, conn, alice.ID, sheet.ID, enums.PurchaseStatusCompleted, "")
	dbtest.SeedPurchase(t, conn, bob.ID, sheet.ID, enums.PurchaseStatusCompleted, "")

	_, err = svc.Rate(ctx, alice.ID, sheet.ID, RateRequest{Score: 0})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	comment := "  clear and concise "
	rated, err := svc.Rate(ctx, alice.ID, sheet.ID, RateRequest{Score: 5, Comment: &comment})
	require.NoError(t, err)
	require.Equal(t, "clear and concise", *rated.Comment)

	_, err = svc.Rate(ctx, bob.ID, sheet.ID, RateRequest{Score: 4})
	require.NoError(t, err)
	// a second rating from the same buyer replaces the first
	_, err = svc.Rate(ctx, alice.ID, sheet.ID, RateRequest{Score: 3})
	require.NoError(t, err)

	var row models.Sheet
	require.NoError(t, conn.First(&row, "id = ?", sheet.ID).Error)
	require.Equal(t, 2, row.RatingCount)
	require.Equal(t, "3.50", row.RatingAverage.StringFixed(2))

	page, err := svc.List(ctx, sheet.ID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)
}

// callOrderSheets records the catalog calls made inside the rating transaction.
type callOrderSheets struct {
	sheets.Repository
	mu    *sync.Mutex
	calls *[]string
}

func (c callOrderSheets) WithTx(tx *gorm.DB) sheets.Repository {
	return callOrderSheets{Repository: c.Repository.WithTx(tx), mu: c.mu, calls: c.calls}
}

func (c callOrderSheets) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.calls = append(*c.calls, name)
}

func (c callOrderSheets) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Sheet, error) {
	c.record("lock")
	return c.Repository.LockForUpdate(ctx, id)
}

func (c callOrderSheets) UpdateRatingStats(ctx context.Context, id uuid.UUID, count int, average decimal.Decimal) error {
	c.record("stats")
	return c.Repository.UpdateRatingStats(ctx, id, count, average)
}

func TestRateLocksSheetBeforeAggregating(t *testing.T) {
	conn := dbtest.Open(t)
	var (
		mu    sync.Mutex
		calls []string
	)
	sheetRepo := callOrderSheets{Repository: sheets.NewRepository(conn), mu: &mu, calls: &calls}
	gate, err := entitlements.NewGate(purchases.NewRepository(conn), sheetRepo)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), sheetRepo, gate, db.Wrap(conn), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	seller := dbtest.SeedSeller(t, conn)
	buyer := dbtest.SeedUser(t, conn)
	sheet := dbtest.SeedSheet(t, conn, seller.ID)
	dbtest.SeedPurchase(t, conn, buyer.ID, sheet.ID, enums.PurchaseStatusCompleted, "")

	_, err = svc.Rate(context.Background(), buyer.ID, sheet.ID, RateRequest{Score: 4})
	require.NoError(t, err)
	require.Equal(t, []string{"lock", "stats"}, calls)
}

func TestConcurrentRatingsKeepAggregateExact(t *testing.T) {
	conn := dbtest.Open(t)
	sheetRepo := sheets.NewRepository(conn)
	gate, err := entitlements.NewGate(purchases.NewRepository(conn), sheetRepo)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(conn), sheetRepo, gate, db.Wrap(conn), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)

	seller := dbtest.SeedSeller(t, conn)
	sheet := dbtest.SeedSheet(t, conn, seller.ID)
	const raters = 6
	buyers := make([]uuid.UUID, 0, raters)
	for i := 0; i < raters; i++ {
		buyer := dbtest.SeedUser(t, conn)
		dbtest.SeedPurchase(t, conn, buyer.ID, sheet.ID, enums.PurchaseStatusCompleted, "")
		buyers = append(buyers, buyer.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, raters)
	for i, buyerID := range buyers {
		wg.Add(1)
		go func(score int, buyerID uuid.UUID) {
			defer wg.Done()
			if _, err := svc.Rate(context.Background(), buyerID, sheet.ID, RateRequest{Score: score}); err != nil {
				errs <- fmt.Errorf("buyer %s: %w", buyerID, err)
			}
		}(i%5+1, buyerID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// scores 1,2,3,4,5,1
	var row models.Sheet
	require.NoError(t, conn.First(&row, "id = ?", sheet.ID).Error)
	require.Equal(t, raters, row.RatingCount)
	require.Equal(t, "2.67", row.RatingAverage.StringFixed(2))
}
