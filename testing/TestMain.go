package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PAYDASH_TEST_MODE", "1")
		if os.Getenv("ADMIN_PASSWORD_HASH") == "" {
			_ = os.Setenv("ADMIN_PASSWORD_HASH", "test-only")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
