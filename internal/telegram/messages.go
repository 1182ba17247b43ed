package telegram

const (
	msgWelcome           = "Hi! I'm the HR assistant. Choose an action from the menu."
	msgNotUnderstood     = "Sorry, I didn't understand that. Please choose an action from the menu."
	msgRegistered        = "You're registered, %s!"
	msgAlreadyRegistered = "You're already registered."
	msgNotRegistered     = "Please register first: press \"" + LabelRegister + "\" or send /register."

	msgAskPosition     = "Which position are you applying for? Send /cancel to stop."
	msgAskSalary       = "What monthly salary do you expect? Send a whole number, digits only."
	msgInvalidSalary   = "The salary must be a whole number using digits only, for example 50000. Please try again."
	msgAskRegion       = "Which region are you in?"
	msgTextRequired    = "Please answer with a text message."
	msgApplicationDone = "Thank you! Your application has been saved:\n%s"
	msgCancelled       = "Application cancelled."
	msgNothingToCancel = "There is nothing to cancel."

	msgNoApplications     = "There are no applications yet."
	msgApplicationsHeader = "Applications (%d):"
	msgPermissionDenied   = "You don't have permission to do that."
	msgCleared            = "All applications have been deleted (%d)."
	msgStats              = "Users: %d\nApplications: %d"
	msgExportCaption      = "Applications export (%d rows)"

	msgMeetingLink = "🔗 Your meeting: %s"

	msgAskResume         = "Send your résumé as a PDF or DOCX file."
	msgUnsupportedFormat = "❌ This file format isn't supported. Please send a PDF or DOCX."
	msgResumeSaved       = "✅ Résumé saved! Notifying HR..."
	msgResumeNotified    = "📧 HR has been notified about your résumé."
	msgResumeNotifyError = "⚠️ Your résumé is saved, but we couldn't notify HR. Please try again later."

	msgFailure = "Something went wrong. Please try again later."
)
