package security_test

import (
	"testing"

	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/security"
)

var testCfg = config.PasswordConfig{
	ArgonMemoryKB:    8192,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerify(t *testing.T) {
	h := security.NewHasher(testCfg)

	hash, err := h.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	ok, err := h.Verify("correct horse battery", hash)
	if err != nil || !ok {
		t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("wrong password", hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("Verify accepted the wrong password")
	}
}

func TestHashRejectsEmpty(t *testing.T) {
	if _, err := security.NewHasher(testCfg).Hash(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := security.NewHasher(testCfg)
	for _, encoded := range []string{"not-a-hash", "$argon2i$v=19$m=1,t=1,p=1$aa$bb", "$argon2id$v=19$garbage$aa$bb"} {
		if _, err := h.Verify("pw", encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	h := security.NewHasher(testCfg)
	hash, err := h.Hash("password123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if h.NeedsRehash(hash) {
		t.Fatal("fresh hash should not need a rehash")
	}

	stronger := testCfg
	stronger.ArgonTime = 2
	if !security.NewHasher(stronger).NeedsRehash(hash) {
		t.Fatal("changed params should require a rehash")
	}
}
