package db

import (
	"database/sql"
	"fmt"
)

// SeedFixtures populates the database with demo deals so the intake flow can
// be exercised locally: a prospect with two deals, and one whose deal is
// reachable through a linked prospect.
func SeedFixtures(database *sql.DB) error {
	deals := []struct {
		prospectID, linkedProspectID, passcode string
		amount                                 float64
		areaOfWork, serviceDescription, pitch  string
	}{
		{"42", "", "xyz", 1500, "commercial", "Contract Dispute", "AC"},
		{"42", "", "xyz", 2500, "commercial", "Shareholder Dispute", "AC"},
		{"27367", "", "94842", 950, "property", "Lease Renewal", "JW"},
		{"31001", "42", "linked", 400, "employment", "Settlement Agreement", "LZ"},
	}
	for _, d := range deals {
		var linked sql.NullString
		if d.linkedProspectID != "" {
			linked = sql.NullString{String: d.linkedProspectID, Valid: true}
		}
		if _, err := database.Exec(
			`INSERT INTO deals (prospect_id, linked_prospect_id, passcode, amount, area_of_work, service_description, pitched_by, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 'open')`,
			d.prospectID, linked, d.passcode, d.amount, d.areaOfWork, d.serviceDescription, d.pitch,
		); err != nil {
			return fmt.Errorf("seed deals: %w", err)
		}
	}

	return nil
}
