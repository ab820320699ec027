package models

// EventStats summarizes attendance for one event.
type EventStats struct {
	EventID       string `json:"event_id"`
	Total         int    `json:"total"`
	CheckedIn     int    `json:"checked_in"`
	Remaining     int    `json:"remaining"`
	TotalCheckIns int    `json:"total_check_ins"`
}
