// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mmeshcher/projectdesk/internal/model"
)

// ErrInvalid возвращается для некорректных или выходящих за допустимые границы данных.
var ErrInvalid = errors.New("validation failed")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// IsValidPaymentStatus проверяет, что статус платежа входит в перечисление.
func IsValidPaymentStatus(s model.PaymentStatus) bool {
	return slices.Contains(model.PaymentStatuses, s)
}

// IsValidTaskStatus проверяет, что статус задачи входит в перечисление.
func IsValidTaskStatus(s model.TaskStatus) bool {
	return slices.Contains(model.TaskStatuses, s)
}

// PaymentInput проверяет данные нового платежа.
func PaymentInput(in model.PaymentInput) error {
	if strings.TrimSpace(in.ProjectID) == "" {
		return invalid("project id is required")
	}
	if in.Amount < 0 {
		return invalid("amount must not be negative")
	}
	if !IsValidPaymentStatus(in.Status) {
		return invalid("unknown payment status %q", in.Status)
	}
	if in.InvoiceID != nil && strings.TrimSpace(*in.InvoiceID) == "" {
		return invalid("invoice id must not be blank")
	}
	return nil
}

// PaymentPatch проверяет частичное обновление платежа.
func PaymentPatch(p model.PaymentPatch) error {
	if p.Amount != nil && *p.Amount < 0 {
		return invalid("amount must not be negative")
	}
	if p.Status != nil && !IsValidPaymentStatus(*p.Status) {
		return invalid("unknown payment status %q", *p.Status)
	}
	if p.PaymentDate != nil && p.PaymentDate.IsZero() {
		return invalid("payment date must be set")
	}
	return nil
}

// TaskInput проверяет данные новой задачи.
func TaskInput(in model.TaskInput) error {
	if strings.TrimSpace(in.ProjectID) == "" {
		return invalid("project id is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return invalid("task title is required")
	}
	if len(title) > 200 {
		return invalid("task title is longer than 200 characters")
	}
	if !IsValidTaskStatus(in.Status) {
		return invalid("unknown task status %q", in.Status)
	}
	return nil
}

// TaskStatus проверяет новый статус задачи.
func TaskStatus(s model.TaskStatus) error {
	if !IsValidTaskStatus(s) {
		return invalid("unknown task status %q", s)
	}
	return nil
}
