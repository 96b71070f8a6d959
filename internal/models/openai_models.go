package models

type EntityRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type EntityExtractionResponse struct {
	Results []EntityResult `json:"results"`
}

type EntityResult struct {
	ID       string   `json:"id"`
	Entities []string `json:"entities"`
}
