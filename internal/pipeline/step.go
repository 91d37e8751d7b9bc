package pipeline

import (
	"context"
	"time"
)

// Имена шагов образуют закрытое множество: новый шаг требует
// регистрации имени здесь и добавления реализации в реестр.
const (
	StepDetect = "detect"
	StepOCR    = "ocr"
	StepGrade  = "grade"
)

// KnownStepNames — закрытое множество имён шагов в объявленном порядке.
var KnownStepNames = []string{StepDetect, StepOCR, StepGrade}

// Step — контракт, которому удовлетворяет каждый шаг пайплайна.
//
// Executor обращается с шагами полиморфно: получает имя, порядок и
// бюджет времени, затем вызывает Execute под таймаутом. Шаг не имеет
// права мутировать хранилище executions/steps — персистентность
// принадлежит Executor'у.
type Step interface {
	// Name возвращает стабильный идентификатор из закрытого множества.
	Name() string

	// Order объявляет позицию шага (с 1). Должен совпадать с позицией
	// в реестре — расхождение есть ошибка конфигурации, не рантайма.
	Order() int

	// Timeout — максимальный бюджет времени на выполнение шага.
	Timeout() time.Duration

	// Execute выполняет шаг над байтами артефакта с учётом накопленного
	// контекста предыдущих шагов. Шаг должен быть идемпотентным и
	// безопасным для abandon: при таймауте горутина шага бросается,
	// её побочные эффекты не откатываются.
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// Request — входные данные для выполнения шага.
type Request struct {
	// Image — байты обрабатываемого изображения.
	Image []byte

	// ContentType — MIME-тип изображения.
	ContentType string

	// Context — накопленные результаты предыдущих шагов.
	Context Context
}

// Response — результат выполнения шага.
type Response struct {
	// Outputs — структурированный результат шага.
	// Попадает в запись шага и в накопленный контекст.
	Outputs map[string]any
}

// Context — накопленный контекст одного прогона: имя шага → его outputs.
//
// Живёт только в памяти в рамках одного вызова Executor'а; долговечная
// копия каждого output лежит в записи шага.
type Context map[string]map[string]any

// Merge добавляет результат шага в контекст.
func (c Context) Merge(stepName string, outputs map[string]any) {
	c[stepName] = outputs
}

// Value возвращает значение из output указанного шага.
func (c Context) Value(stepName, key string) (any, bool) {
	outputs, ok := c[stepName]
	if !ok {
		return nil, false
	}
	v, ok := outputs[key]
	return v, ok
}

// Float извлекает числовое значение из output шага.
// JSON-roundtrip превращает числа в float64, учитываем оба представления.
func (c Context) Float(stepName, key string) (float64, bool) {
	v, ok := c.Value(stepName, key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// NewRequest создаёт Request с инициализированным контекстом.
func NewRequest(image []byte, contentType string, pctx Context) *Request {
	if pctx == nil {
		pctx = make(Context)
	}
	return &Request{
		Image:       image,
		ContentType: contentType,
		Context:     pctx,
	}
}
