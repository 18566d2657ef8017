package speech

// 帧状态值，ASR 的音频帧和 TTS 的文本帧共用。
const (
	statusFirstFrame    = 0
	statusContinueFrame = 1
	statusLastFrame     = 2
)

type commonParams struct {
	AppID string `json:"app_id"`
}

// ---- ASR ----

type asrBusiness struct {
	Domain   string `json:"domain"`
	Language string `json:"language"`
	Accent   string `json:"accent"`
	Vinfo    int    `json:"vinfo"`
	VadEOS   int    `json:"vad_eos"`
}

type asrData struct {
	Status   int    `json:"status"`
	Format   string `json:"format"`
	Audio    string `json:"audio"`
	Encoding string `json:"encoding"`
}

// asrFrame 首帧携带 common/business，后续帧只带 data。
type asrFrame struct {
	Common   *commonParams `json:"common,omitempty"`
	Business *asrBusiness  `json:"business,omitempty"`
	Data     asrData       `json:"data"`
}

type asrResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Sid     string `json:"sid"`
	Data    struct {
		Status int `json:"status"`
		Result struct {
			Ws []struct {
				Cw []struct {
					W string `json:"w"`
				} `json:"cw"`
			} `json:"ws"`
		} `json:"result"`
	} `json:"data"`
}

// ---- TTS ----

type ttsBusiness struct {
	Aue    string `json:"aue"`
	Auf    string `json:"auf"`
	Vcn    string `json:"vcn"`
	Tte    string `json:"tte"`
	Speed  int    `json:"speed"`
	Volume int    `json:"volume"`
}

type ttsData struct {
	Status int    `json:"status"`
	Text   string `json:"text"`
}

type ttsFrame struct {
	Common   commonParams `json:"common"`
	Business ttsBusiness  `json:"business"`
	Data     ttsData      `json:"data"`
}

type ttsResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Sid     string `json:"sid"`
	Data    struct {
		Audio  string `json:"audio"`
		Status int    `json:"status"`
	} `json:"data"`
}
