package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("REGISTRU_TEST_MODE", "1")
		if os.Getenv("AUTH_TOKEN_SECRET") == "" {
			_ = os.Setenv("AUTH_TOKEN_SECRET", "test-secret-test-secret-test-secret!")
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
