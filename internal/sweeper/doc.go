// Package sweeper — фоновая уборка следов упавших прогонов.
//
// Система не гарантирует, что воркер доживёт до конца пайплайна:
// процесс может умереть между персистенциями шагов, оставив execution
// в RUNNING навсегда. Sweeper по cron-расписанию находит такие записи,
// закрывает их как FAILED("abandoned") и, если отказ восстановим,
// заново ставит артефакт в очередь — с лимитом прогонов на артефакт.
package sweeper
