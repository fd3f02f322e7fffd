package handlers

import (
	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/schedule"
	"github.com/abrezinsky/slotboard/internal/services"
)

// BoardResponse is the response for board queries
type BoardResponse struct {
	Slots []services.SlotView `json:"slots"`
	Admin bool                `json:"admin"`
}

// SportsResponse describes the catalog the board is built from
type SportsResponse struct {
	Sports  []string         `json:"sports"`
	Catalog schedule.Catalog `json:"catalog"`
	Blocks  []schedule.Block `json:"blocks"`
	Days    []string         `json:"days"`
}

// MeResponse describes the signed-in caller
type MeResponse struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin"`
}

// BackupsResponse lists stored snapshots
type BackupsResponse struct {
	Backups []models.BackupSummary `json:"backups"`
}
