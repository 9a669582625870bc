package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type InvoiceReconciler interface {
	ReconcileInvoices(ctx context.Context) (int, error)
}

const JobInvoiceReconcile = "invoice_reconcile"

// NewInvoiceReconcileWorker issues invoices the capture path failed to create.
func NewInvoiceReconcileWorker(interval time.Duration, r InvoiceReconciler, logger *zerolog.Logger) *Job {
	return NewJob(JobInvoiceReconcile, interval, r.ReconcileInvoices, logger)
}
