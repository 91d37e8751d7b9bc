// Package workflow — синхронная точка входа для ручных прогонов.
//
// В отличие от асинхронного пути (очередь → worker → execution в БД),
// workflows выполняются в рамках HTTP-запроса и не оставляют следов
// в execution-журнале. Закрытый набор:
//
//   - detect, ocr, grade — прямой вызов Execute одного шага
//   - crop — детекция + обрезка + перезапись артефакта в хранилище
//   - full — постановка полного прогона в очередь (adapter к worker)
//
// Доменные ошибки шагов (NoSubjectError, MultipleSubjectsError)
// возвращаются вызывающему типизированными: это исходы валидации,
// а не сбои системы.
package workflow
