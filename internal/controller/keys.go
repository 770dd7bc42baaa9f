package controller

// Key is a normalized keyboard chord from the presentation layer.
type Key struct {
	Code  string // "w", "Tab", "1".."9"
	Ctrl  bool
	Shift bool
}

// HandleKey dispatches the session keyboard contract:
//
//	Ctrl+W          close active tab
//	Ctrl+Tab        next tab
//	Ctrl+Shift+Tab  previous tab
//	Ctrl+1..9       activate tab by index
//
// Returns true when the chord was consumed.
func (c *Controller) HandleKey(k Key) bool {
	if !k.Ctrl {
		return false
	}

	switch k.Code {
	case "w", "W":
		if k.Shift {
			return false
		}
		c.CloseActiveTab()
		return true

	case "Tab":
		if k.Shift {
			c.PreviousTab()
		} else {
			c.NextTab()
		}
		return true

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		if k.Shift {
			return false
		}
		c.ActivateIndex(int(k.Code[0] - '0'))
		return true
	}

	return false
}
