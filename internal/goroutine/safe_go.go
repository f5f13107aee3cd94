// Package goroutine запускает фоновые горутины, которые не роняют процесс паникой.
package goroutine

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// RecoveryHandler запускает горутины, перехватывает их паники и умеет дождаться завершения.
type RecoveryHandler struct {
	log    logrus.FieldLogger
	wg     sync.WaitGroup
	panics atomic.Int64
}

func NewRecoveryHandler(log logrus.FieldLogger) *RecoveryHandler {
	return &RecoveryHandler{log: log}
}

// SafeGo запускает fn в горутине. name попадает в лог, если fn запаникует.
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	rh.wg.Add(1)
	go func() {
		defer rh.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				rh.panics.Add(1)
				rh.log.WithFields(logrus.Fields{
					"goroutine": name,
					"panic":     r,
					"stack":     string(debug.Stack()),
				}).Error("goroutine: паника перехвачена")
			}
		}()
		fn()
	}()
}

// Panics число перехваченных паник с момента создания.
func (rh *RecoveryHandler) Panics() int64 {
	return rh.panics.Load()
}

// Wait ждёт завершения всех запущенных горутин (graceful shutdown и тесты).
func (rh *RecoveryHandler) Wait() {
	rh.wg.Wait()
}
