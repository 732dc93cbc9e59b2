package storage

type User struct {
	ID           string
	Email        string
	PasswordHash   string
	SessionVersion int64
	CreatedAt      string
	UpdatedAt      string
}

type Month struct {
	ID        string
	StartDate string
	EndDate   string
	Money     string
	OwnerID   string
	CreatedAt string
	UpdatedAt string
}

type Note struct {
	ID        string
	Title     string
	Money     string
	MonthID   string
	CreatedAt string
	UpdatedAt string
}
