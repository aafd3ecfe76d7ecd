package store

// ShowDetailedStats reads the detailed-stats toggle. Unset means true.
func ShowDetailedStats(s Storage) (bool, error) {
	show := true
	if _, err := GetJSON(s, KeyShowDetailedStats, &show); err != nil {
		return true, err
	}
	return show, nil
}

// SetShowDetailedStats persists the detailed-stats toggle.
func SetShowDetailedStats(s Storage, show bool) error {
	return SetJSON(s, KeyShowDetailedStats, show)
}
