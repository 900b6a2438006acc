package purchase

// Outcome is the business result of PlaceOrder. Rejections are outcomes, not
// errors.
type Outcome int

const (
	Ordered Outcome = iota
	NotStarted
	Ended
	OutOfStock
	AlreadyPurchased
	PromotionNotFound
)

func (o Outcome) String() string {
	switch o {
	case Ordered:
		return "ordered"
	case NotStarted:
		return "not_started"
	case Ended:
		return "ended"
	case OutOfStock:
		return "out_of_stock"
	case AlreadyPurchased:
		return "already_purchased"
	case PromotionNotFound:
		return "promotion_not_found"
	default:
		return "unknown"
	}
}

// Result of one purchase attempt. OrderID is set only for Ordered.
type Result struct {
	Outcome Outcome
	OrderID uint64
}

func (r Result) Ordered() bool { return r.Outcome == Ordered }
