package model

type Participant struct {
	ID              string  `json:"id" db:"id"`
	Name            string  `json:"name" db:"name"`
	ColorTag        string  `json:"color_tag" db:"color_tag"`
	StartingCashKRW float64 `json:"starting_cash_krw" db:"starting_cash_krw"`
}

type Portfolio struct {
	ID            string   `json:"id" db:"id"`
	ParticipantID string   `json:"participant_id" db:"participant_id"`
	BaseCurrency  Currency `json:"base_currency" db:"base_currency"`
	IsActive      bool     `json:"is_active" db:"is_active"`
}

// Entrant is a participant together with the portfolio the competition tracks.
type Entrant struct {
	Participant Participant
	Portfolio   Portfolio
}
