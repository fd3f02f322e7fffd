package handlers

import "github.com/abrezinsky/slotboard/internal/services"

// SignInRequest carries an identity token issued by the sign-in provider
type SignInRequest struct {
	Token string `json:"token"`
}

// GuestRequest represents a request to add a guest to an option
type GuestRequest struct {
	FullName        string `json:"fullName"`
	ParishionerName string `json:"parishionerName"`
	FamilyID        string `json:"familyId"`
}

func (r GuestRequest) toGuestData() services.GuestData {
	return services.GuestData{
		FullName:        r.FullName,
		ParishionerName: r.ParishionerName,
		FamilyID:        r.FamilyID,
	}
}

// PreferencesRequest represents a request to save the sport selection
type PreferencesRequest struct {
	SelectedSports []string `json:"selectedSports"`
}

// SettingsUpdateRequest represents a request to update settings. Omitted
// fields are left unchanged; an empty string clears a setting.
type SettingsUpdateRequest struct {
	BoardURL *string `json:"board_url"`
	BaseURL  *string `json:"base_url"`
}
