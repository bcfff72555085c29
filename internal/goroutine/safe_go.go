package goroutine

import (
	"log"
	"runtime/debug"

	"github.com/laburoapp/laburo-backend/internal/logger"
)

// SafeGo запускает fn в отдельной горутине и перехватывает panic,
// чтобы сбой фоновой задачи не ронял процесс.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logPanic(r)
			}
		}()
		fn()
	}()
}

// logPanic пишет panic со стеком в общий логгер, а до его инициализации в stdlib log.
func logPanic(r interface{}) {
	stack := debug.Stack()
	if logger.Log != nil {
		logger.Log.Errorf("goroutine: перехвачена panic: %v\n%s", r, stack)
		return
	}
	log.Printf("goroutine: перехвачена panic: %v\n%s", r, stack)
}
