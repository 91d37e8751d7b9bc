// Package pipeline содержит контракт шага и реализации шагов обработки.
//
// # Контракт
//
// Каждый шаг реализует интерфейс Step:
//
//	type Step interface {
//	    Name() string
//	    Order() int
//	    Timeout() time.Duration
//	    Execute(ctx context.Context, req *Request) (*Response, error)
//	}
//
// Request несёт байты изображения и накопленный контекст (Context —
// имя шага → его outputs). Response несёт outputs шага. Шаги не пишут
// в хранилище: персистентность принадлежит executor'у.
//
// # Реестр
//
// Registry — статически упорядоченный список шагов. Порядок списка —
// источник истины; Order() каждого шага обязан совпадать с позицией,
// иначе NewRegistry возвращает ошибку конфигурации до любого запуска.
//
// Стандартный пайплайн: detect → ocr → grade.
//
// # Шаги
//
//   - detect (detect.go) — поиск книги на изображении; доменные ошибки
//     NoSubjectError и MultipleSubjectsError различимы через errors.As
//   - ocr (ocr.go) — распознавание текста через внешний OCR-сервис
//   - grade (grade.go) — оценка состояния по результатам предыдущих шагов
//
// Алгоритмы detect и grade — детерминированные заглушки; контракт
// (имена, порядок, outputs, ошибки) при замене не меняется.
package pipeline
