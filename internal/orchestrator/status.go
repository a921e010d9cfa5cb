package orchestrator

import (
	"context"

	"psicoapp/internal/reconcile"
)

// StatusResult compares the names used by sessions and patients.
type StatusResult struct {
	SessionNames []string
	PatientNames []string
	Divergent    []string // Session names with no matching patient
	Unreferenced []string // Patient names with no session
}

// Status reads both name lists and reports where they disagree. It does
// not write anything.
func (a *App) Status(ctx context.Context) (*StatusResult, error) {
	r := reconcile.New(a.Store, ReconcileOptions(a.Config), a.Logger.Named("status"), nil)

	sessions, err := r.ListNames(ctx, reconcile.SourceSessions)
	if err != nil {
		return nil, err
	}
	patients, err := r.ListNames(ctx, reconcile.SourcePatients)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		SessionNames: sessions,
		PatientNames: patients,
		Divergent:    reconcile.FindDivergent(sessions, patients),
		Unreferenced: reconcile.FindUnreferenced(sessions, patients),
	}, nil
}
