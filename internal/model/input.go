package model

import "time"

// PaymentInput содержит данные для создания платежа.
type PaymentInput struct {
	ProjectID   string
	InvoiceID   *string
	Amount      int64
	Status      PaymentStatus
	PaymentDate *time.Time
	Description string
}

// PaymentPatch содержит частичное обновление платежа. Nil-поле означает «без изменений».
// Пустая строка в InvoiceID отвязывает платёж от счёта.
type PaymentPatch struct {
	InvoiceID   *string
	Amount      *int64
	Status      *PaymentStatus
	PaymentDate *time.Time
	Description *string
}

// Apply возвращает копию платежа с применённым обновлением.
func (p PaymentPatch) Apply(payment Payment) Payment {
	if p.InvoiceID != nil {
		if *p.InvoiceID == "" {
			payment.InvoiceID = nil
		} else {
			id := *p.InvoiceID
			payment.InvoiceID = &id
		}
	}
	if p.Amount != nil {
		payment.Amount = *p.Amount
	}
	if p.Status != nil {
		payment.Status = *p.Status
	}
	if p.PaymentDate != nil {
		payment.PaymentDate = *p.PaymentDate
	}
	if p.Description != nil {
		payment.Description = *p.Description
	}
	return payment
}

// TaskInput содержит данные для создания задачи.
type TaskInput struct {
	ProjectID string
	Title     string
	Status    TaskStatus
}
