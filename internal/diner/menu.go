package diner

import "errors"

var ErrUnknownItem = errors.New("unknown menu item")

type MenuItem struct {
	Ref             string   `json:"ref"`
	Name            string   `json:"name"`
	Type            ItemType `json:"type"`
	PriceCents      int      `json:"price_cents"`
	PrepSeconds     int      `json:"prep_seconds"`
	DurationSeconds int      `json:"duration_seconds"`
}

// Katalog statis; durasi consume yang dipakai Consumable diambil dari sini.
var menu = map[string]MenuItem{
	"coffee":  {Ref: "coffee", Name: "Kopi Hitam", Type: ItemDrink, PriceCents: 250, PrepSeconds: 5, DurationSeconds: 300},
	"tea":     {Ref: "tea", Name: "Teh Melati", Type: ItemDrink, PriceCents: 200, PrepSeconds: 4, DurationSeconds: 300},
	"ramen":   {Ref: "ramen", Name: "Ramen Shoyu", Type: ItemFood, PriceCents: 900, PrepSeconds: 12, DurationSeconds: 600},
	"curry":   {Ref: "curry", Name: "Kare Rice", Type: ItemFood, PriceCents: 850, PrepSeconds: 10, DurationSeconds: 600},
	"omurice": {Ref: "omurice", Name: "Omurice", Type: ItemFood, PriceCents: 800, PrepSeconds: 10, DurationSeconds: 600},
	"pudding": {Ref: "pudding", Name: "Purin", Type: ItemDessert, PriceCents: 400, PrepSeconds: 6, DurationSeconds: 240},
}

func LookupMenuItem(ref string) (MenuItem, error) {
	it, ok := menu[ref]
	if !ok {
		return MenuItem{}, ErrUnknownItem
	}
	return it, nil
}

func MenuItems() []MenuItem {
	out := make([]MenuItem, 0, len(menu))
	for _, it := range menu {
		out = append(out, it)
	}
	return out
}
