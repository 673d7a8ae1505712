package fsm

// Onboarding steps in the order a user has to complete them.
const (
	StepDownloadApp   = 1
	StepFollowTwitter = 2
	StepFollowInsta   = 3
	StepJoinChannel   = 4
	StepWalletAddress = 5
	StepFinalConfirm  = 6

	// StepComplete is the terminal state reached after StepFinalConfirm.
	StepComplete = 7

	TotalSteps = 6
)

// Button actions understood by the step machine.
const (
	ActionConfirmDownload    = "confirm_download"
	ActionConfirmChannelJoin = "confirm_channel_join"
	ActionConfirmFinal       = "confirm_final"
	ActionRestart            = "restart"
	ActionReset              = "reset"
)

// Informational actions that only render text and never touch progress.
const (
	ActionTwitterInfo   = "twitter_info"
	ActionInstagramInfo = "instagram_info"
	ActionAddressInfo   = "bep20_info"
	ActionHelp          = "help"
	ActionShowStatus    = "show_status"
)

// StepForAction returns the step a button action belongs to, or 0 when the
// action is not bound to a single step.
func StepForAction(action string) int {
	switch action {
	case ActionConfirmDownload:
		return StepDownloadApp
	case ActionConfirmChannelJoin:
		return StepJoinChannel
	case ActionConfirmFinal:
		return StepFinalConfirm
	default:
		return 0
	}
}

func IsValidStep(step int) bool {
	return step >= StepDownloadApp && step <= StepFinalConfirm
}

var stepTitles = map[int]string{
	StepDownloadApp:   "App Download & Review",
	StepFollowTwitter: "Twitter Follow",
	StepFollowInsta:   "Instagram Follow",
	StepJoinChannel:   "Telegram Join",
	StepWalletAddress: "BEP20 Address",
	StepFinalConfirm:  "Final Verification",
}

func StepTitle(step int) string {
	if title, ok := stepTitles[step]; ok {
		return title
	}
	if step >= StepComplete {
		return "Complete"
	}
	return "Unknown"
}
