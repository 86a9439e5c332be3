package domain

// MediaRef points at an asset stored on the media host.
type MediaRef struct {
	URL      string `json:"url,omitempty"`
	AssetID  string `json:"asset_id,omitempty"`
	BlurHash string `json:"blur_hash,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// IsZero reports whether the reference points at nothing.
func (m MediaRef) IsZero() bool {
	return m.URL == "" && m.AssetID == ""
}
