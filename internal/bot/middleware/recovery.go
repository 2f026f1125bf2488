package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/escrow-bot/internal/metrics"
)

// Recover гасит панику обработчика апдейта updateID и учитывает её в метриках.
// Вызывать напрямую через defer: recover работает только так.
func Recover(updateID int) {
	r := recover()
	if r == nil {
		return
	}
	metrics.RecordError("panic")
	log.WithFields(log.Fields{
		"component": "panic_recovery",
		"update_id": updateID,
		"panic":     fmt.Sprint(r),
		"stack":     string(debug.Stack()),
	}).Error("Паника при обработке апдейта, обработчик остановлен")
}
