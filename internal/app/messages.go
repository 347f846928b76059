package app

// =============================================================================
// User-facing failure messages
// =============================================================================

const (
	MsgAnalysisFailed  = "לא הצלחנו לנתח את התמונה. אנא נסה שוב."
	MsgReadFailed      = "לא הצלחנו לקרוא את הקובץ. אנא נסה שוב."
	MsgUnexpectedError = "אירעה שגיאה לא צפויה."
	MsgCameraError     = "שגיאה בגישה למצלמה. אנא ודא שהענקת הרשאות."
)
