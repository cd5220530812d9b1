// Package payment holds the gateway client and the callback
// reconciler.  The gateway protocol is the hosted-checkout style used
// by VNPay-compatible providers: the merchant redirects the customer
// to a URL whose query parameters are signed with an HMAC-SHA512 over
// the canonical sorted-and-URL-encoded parameter string, and callback
// parameters are verified with the same recipe.
package payment

import (
    "crypto/hmac"
    "crypto/sha512"
    "encoding/hex"
    "net/url"
    "sort"
    "strconv"
    "strings"
    "time"
)

// GatewayConfig carries the merchant credentials and endpoints.
type GatewayConfig struct {
    MerchantCode string // assigned by the provider (vnp_TmnCode)
    Secret       string // shared HMAC secret
    PayURL       string // hosted checkout endpoint
    ReturnURL    string // where the gateway redirects the customer back
}

// Gateway builds signed redirect URLs and verifies callback
// signatures.  It is stateless and safe for concurrent use.
type Gateway struct {
    cfg GatewayConfig
}

// NewGateway returns a Gateway for the given merchant config.
func NewGateway(cfg GatewayConfig) *Gateway {
    return &Gateway{cfg: cfg}
}

// BuildRedirectURL returns the hosted-checkout URL for a payment.
// reference is the payment ID (echoed back as vnp_TxnRef), amountMinor
// is in minor currency units (the wire format carries it multiplied by
// 100 per the provider convention).
func (g *Gateway) BuildRedirectURL(reference string, amountMinor int64, currency, description, clientIP string, now time.Time) string {
    params := url.Values{}
    params.Set("vnp_Version", "2.1.0")
    params.Set("vnp_Command", "pay")
    params.Set("vnp_TmnCode", g.cfg.MerchantCode)
    params.Set("vnp_Amount", strconv.FormatInt(amountMinor*100, 10))
    params.Set("vnp_CurrCode", currency)
    params.Set("vnp_TxnRef", reference)
    params.Set("vnp_OrderInfo", description)
    params.Set("vnp_OrderType", "other")
    params.Set("vnp_Locale", "vn")
    params.Set("vnp_ReturnUrl", g.cfg.ReturnURL)
    params.Set("vnp_IpAddr", clientIP)
    params.Set("vnp_CreateDate", now.Format("20060102150405"))

    canonical := canonicalQuery(params)
    sig := g.sign(canonical)
    return g.cfg.PayURL + "?" + canonical + "&vnp_SecureHash=" + sig
}

// Verify checks the HMAC signature of a callback.  The signature
// fields themselves are excluded from the signed string.  Any missing
// or mismatching signature fails verification outright; there is no
// partial trust.
func (g *Gateway) Verify(params url.Values) bool {
    got := params.Get("vnp_SecureHash")
    if got == "" {
        return false
    }
    filtered := url.Values{}
    for k, vs := range params {
        if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
            continue
        }
        for _, v := range vs {
            filtered.Add(k, v)
        }
    }
    want := g.sign(canonicalQuery(filtered))
    return hmac.Equal([]byte(strings.ToLower(got)), []byte(want))
}

// sign computes the lowercase hex HMAC-SHA512 of the canonical string.
func (g *Gateway) sign(canonical string) string {
    mac := hmac.New(sha512.New, []byte(g.cfg.Secret))
    mac.Write([]byte(canonical))
    return hex.EncodeToString(mac.Sum(nil))
}

// canonicalQuery renders params as key=value pairs, keys sorted,
// values URL-encoded, joined by '&'.  Both signing and URL building
// use this exact form so the signature always matches the wire bytes.
func canonicalQuery(params url.Values) string {
    keys := make([]string, 0, len(params))
    for k := range params {
        if params.Get(k) == "" {
            continue
        }
        keys = append(keys, k)
    }
    sort.Strings(keys)
    var sb strings.Builder
    for i, k := range keys {
        if i > 0 {
            sb.WriteByte('&')
        }
        sb.WriteString(url.QueryEscape(k))
        sb.WriteByte('=')
        sb.WriteString(url.QueryEscape(params.Get(k)))
    }
    return sb.String()
}
