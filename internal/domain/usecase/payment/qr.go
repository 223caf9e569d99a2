package payment

import (
	"fmt"
	"net/url"
)

// QRConfig identifies the receiving bank account for generated QR codes.
type QRConfig struct {
	BankCode    string // e.g. "MB"
	BankAccount string
	Template    string // VietQR render template, e.g. "compact2"
}

// BuildQRURL returns the VietQR image URL for a transfer of amount minor
// units with the payment code as the transfer memo. Producing this string is
// the extent of this system's QR responsibility; rendering and delivery
// belong to the chat layer.
func BuildQRURL(cfg QRConfig, amount int64, code string) string {
	template := cfg.Template
	if template == "" {
		template = "compact2"
	}
	return fmt.Sprintf("https://img.vietqr.io/image/%s-%s-%s.jpg?amount=%d&addInfo=%s",
		cfg.BankCode, cfg.BankAccount, template, amount, url.QueryEscape(code))
}
