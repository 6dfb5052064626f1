package domain

// ProcessCropMessage asks the image worker to produce one derived image.
type ProcessCropMessage struct {
	JobID       string `json:"job_id"`
	ReferenceID int64  `json:"reference_id"`
	SourceKey   string `json:"source_key"`
	TargetKey   string `json:"target_key"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	CropX       int    `json:"crop_x"`
	CropY       int    `json:"crop_y"`
	CropWidth   int    `json:"crop_width"`
	CropHeight  int    `json:"crop_height"`
	HasCrop     bool   `json:"has_crop"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
}

// ReferenceUpdatedMessage announces a new or changed file reference. Path is
// the "/" separated configuration path (table/type/field[/sub type/sub field]...).
type ReferenceUpdatedMessage struct {
	ReferenceID int64  `json:"reference_id"`
	Path        string `json:"path"`
}
