package conversation

import (
	"fmt"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

// Prompts renders the bot side of the script.
type Prompts struct {
	StudioName string
	Menu       string
}

func (p Prompts) studio() string {
	if p.StudioName == "" {
		return "our studio"
	}
	return p.StudioName
}

// ChoosePackage asks the visitor to pick a package.
func (p Prompts) ChoosePackage() string {
	msg := fmt.Sprintf("Hi! Welcome to %s. Which package are you interested in?", p.studio())
	if p.Menu != "" {
		msg += "\n" + p.Menu
	}
	return msg + "\nYou can also describe what you need for a custom package."
}

// AskName confirms the package and asks for a name.
func (p Prompts) AskName(pkg domain.Package) string {
	if pkg.Kind() == domain.PackageCustom {
		return "Great, we'd love to put together a custom package for you. May I know your name?"
	}
	return fmt.Sprintf("Great choice! %s is %s. May I know your name?", pkg.DisplayName(), pkg.PriceLabel())
}

// AskPhone asks for a mobile number.
func (p Prompts) AskPhone(name string) string {
	return fmt.Sprintf("Thanks, %s! What's the best 10-digit mobile number to reach you on?", name)
}

// InvalidName re-prompts for a name.
func (p Prompts) InvalidName() string {
	return "Sorry, I didn't catch that. Please share your name (letters, not just numbers)."
}

// InvalidPhone re-prompts for a phone number.
func (p Prompts) InvalidPhone() string {
	return "That doesn't look like a valid mobile number. Please enter a 10-digit number starting with 6, 7, 8 or 9."
}

// Completed confirms the request.
func (p Prompts) Completed(name, phone string, pkg domain.Package) string {
	return fmt.Sprintf("Thank you, %s! Your request for the %s has been received. Our team will call you on %s shortly.",
		name, pkg.DisplayName(), phone)
}

// Duplicate explains that this device already has an open request.
func (p Prompts) Duplicate(existingID string) string {
	return fmt.Sprintf("It looks like you've already sent us a booking request today (reference %s). Our team will be in touch soon!", existingID)
}
