package service

const defaultSystemPrompt = `You are a helpful assistant. Answer all questions to the best of your ability. Provide helpful answers in markdown.`

// progressSteps se muestran en orden mientras se prepara la respuesta. El primero ya esta
// en el handle cuando Submit retorna.
var progressSteps = []string{
	"Searching...",
	"Found relevant website. Scraping data...",
	"Analyzing scraped data...",
	"Generating response...",
}

const (
	msgUserNotFound     = "User not found. Please try again later."
	msgTurnInFlight     = "A response is still being generated for this chat. Please wait for it to finish."
	msgSubmitFailed     = "Could not send the message. Please try again later."
	msgStreamAborted    = "The model stopped responding. Please try again."
	msgResetOK          = "Conversation reset successfully."
	msgResetUserMissing = "Error: User not found. Please try again later."
	msgResetFailed      = "Error resetting chat messages. Please try again later or contact support."
)
