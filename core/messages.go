package core

import "fmt"

// Message levels
const (
	LevelSuccess = "success"
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Message is a flash-style, user facing message.
type Message struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewMessage(level, format string, args ...interface{}) Message {
	return Message{Level: level, Message: fmt.Sprintf(format, args...)}
}

func CreatedMessage(model string, obj fmt.Stringer) string {
	return fmt.Sprintf("%s “%s” criado(a) com sucesso.", model, obj)
}

func UpdatedMessage(model string, obj fmt.Stringer) string {
	return fmt.Sprintf("%s “%s” atualizado(a) com sucesso.", model, obj)
}

func DeletedMessage(model string) string {
	return fmt.Sprintf("%s excluído(a) com sucesso.", model)
}
