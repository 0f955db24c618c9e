package service

import "context"

// QuotaStatus replica los campos de cuota del resultado de submit.
type QuotaStatus struct {
	Limit     int
	Remaining int
	Reset     int64
}

// QuotaReporter informa la cuota del usuario. No hay enforcement.
type QuotaReporter interface {
	Status(ctx context.Context, userID string) QuotaStatus
}

// StaticQuota siempre devuelve los mismos valores.
type StaticQuota struct {
	Value QuotaStatus
}

func (q StaticQuota) Status(context.Context, string) QuotaStatus {
	return q.Value
}
