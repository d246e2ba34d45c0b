package knowledge

import "strings"

// Screen 是 show_screen_image 工具可展示的系统界面。
type Screen string

const (
	ScreenSales     Screen = "sales"
	ScreenPurchases Screen = "purchases"
	ScreenInventory Screen = "inventory"
	ScreenLogin     Screen = "login"
	ScreenBarcode   Screen = "barcode"
	ScreenSettings  Screen = "settings"
	ScreenCustomers Screen = "customers"
	ScreenReports   Screen = "reports"
)

// Screens lists every screen name the model may request, in declaration order.
func Screens() []Screen {
	return []Screen{
		ScreenSales, ScreenPurchases, ScreenInventory, ScreenLogin,
		ScreenBarcode, ScreenSettings, ScreenCustomers, ScreenReports,
	}
}

// ScreenNames returns Screens as plain strings.
func ScreenNames() []string {
	screens := Screens()
	names := make([]string, len(screens))
	for i, s := range screens {
		names[i] = string(s)
	}
	return names
}

// ScreenCatalog maps screen names to image URLs. Lookups are case-insensitive.
type ScreenCatalog map[string]string

// DefaultScreenCatalog returns the built-in screen images.
func DefaultScreenCatalog() ScreenCatalog {
	return ScreenCatalog{
		string(ScreenSales):     "https://placehold.co/600x400/png?text=Sales+POS",
		string(ScreenPurchases): "https://placehold.co/600x400/png?text=Purchases",
		string(ScreenInventory): "https://placehold.co/600x400/png?text=Inventory",
	}
}

// Lookup returns the image URL for name, or false when the screen has no image.
func (c ScreenCatalog) Lookup(name string) (string, bool) {
	url, ok := c[strings.ToLower(strings.TrimSpace(name))]
	if !ok || url == "" {
		return "", false
	}
	return url, true
}
