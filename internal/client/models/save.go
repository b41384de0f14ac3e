package models

// GameSave mirrors the server's save record.
type GameSave struct {
	Username string `json:"username"`
	Date     string `json:"date"`
	SaveData string `json:"saveData"`
	AutoSave bool   `json:"autoSave"`
}

// SaveList is the body of a successful getSaves call. Saves are newest first.
type SaveList struct {
	Code     int        `json:"code"`
	Saves    []GameSave `json:"saves"`
	Autosave *GameSave  `json:"autosave,omitempty"`
}

// Status is the {code, message} body of the save endpoints.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
