package model

type Settings struct {
	Storage StorageSettings `json:"storage"`
	App     AppSettings     `json:"app"`
}

type StorageSettings struct {
	DataDir         string   `json:"dataDir"`
	CurrentTaskFile string   `json:"currentTaskFile"`
	RecentTaskFiles []string `json:"recentTaskFiles"`
}

type AppSettings struct {
	MaxTasksPerPage int `json:"maxTasksPerPage"`
	MaxBackups      int `json:"maxBackups"`
}

// SettingsPatch — merge идет по группам, внутри группы только непустые поля
type SettingsPatch struct {
	Storage *StorageSettingsPatch `json:"storage,omitempty"`
	App     *AppSettingsPatch     `json:"app,omitempty"`
}

type StorageSettingsPatch struct {
	DataDir         *string `json:"dataDir,omitempty"`
	CurrentTaskFile *string `json:"currentTaskFile,omitempty"`
}

type AppSettingsPatch struct {
	MaxTasksPerPage *int `json:"maxTasksPerPage,omitempty"`
	MaxBackups      *int `json:"maxBackups,omitempty"`
}
