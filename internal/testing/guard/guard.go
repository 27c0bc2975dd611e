// Package guard forces test mode before any runtime code consults it.
// Blank-import it from packages whose tests must never start servers.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ANDINO_TEST_MODE") == "" {
			_ = os.Setenv("ANDINO_TEST_MODE", "1")
		}
	})
}
