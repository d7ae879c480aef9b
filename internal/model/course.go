package model

// Course курс из каталога, на который можно записаться без слота
type Course struct {
	ID              int64  `json:"id"`
	ProviderID      int64  `json:"provider_id"`
	Title           string `json:"title"`
	BaseRate        int64  `json:"base_rate"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
}
