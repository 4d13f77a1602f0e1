package domain

// RegistrationRequest は外部登録サービスに送るリクエストボディです。
type RegistrationRequest struct {
	ImageBase64 string `json:"imageBase64" validate:"required,base64"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

// RegistrationReceipt は登録サービスからの成功レスポンスです。
type RegistrationReceipt struct {
	Success *bool  `json:"success,omitempty"`
	ID      string `json:"storyProtocolId"`
	Error   string `json:"error,omitempty"`

	// Raw はデコードしたレスポンス全体。未知のフィールドもここに残ります。
	Raw map[string]any `json:"-"`
}
