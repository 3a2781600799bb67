package assetgate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	MaxExpiresSeconds  = 604800 // 7 days
	DateTimeFormat     = "20060102T150405Z"
	DateFormat         = "20060102"

	unsignedPayload = "UNSIGNED-PAYLOAD"
	signedHostOnly  = "host"
)

// CapabilityInfo describes the validity window embedded in a presigned URL.
type CapabilityInfo struct {
	AccessKey string
	IssuedAt  time.Time
	Validity  time.Duration
	ExpiresAt time.Time
}

// InspectCapability parses a SigV4 presigned URL and reports when it was
// issued and when it expires. The signature itself is not checked.
func InspectCapability(rawURL string) (CapabilityInfo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return CapabilityInfo{}, fmt.Errorf("inspect capability: %w: %v", ErrInvalidCapability, err)
	}

	params, err := extractParams(u.Query())
	if err != nil {
		return CapabilityInfo{}, fmt.Errorf("inspect capability: %w", err)
	}

	validity := time.Duration(params.expires) * time.Second
	return CapabilityInfo{
		AccessKey: params.accessKey,
		IssuedAt:  params.requestTime,
		Validity:  validity,
		ExpiresAt: params.requestTime.Add(validity),
	}, nil
}

// Signer produces AWS Signature V4 query-string presigned URLs.
// Only the host header is signed and the payload is left unsigned, the same
// shape S3 presigned URLs take.
type Signer struct {
	Region    string
	Service   string
	AccessKey string
	SecretKey string
}

// Presign returns rawURL with the X-Amz-* query parameters that authorize
// method until issuedAt+expires. expires is rounded to whole seconds and must
// fall within 1 second and MaxExpiresSeconds.
func (s Signer) Presign(method, rawURL string, issuedAt time.Time, expires time.Duration) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("presign: parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("presign: url %q has no host", rawURL)
	}

	seconds := int(expires.Round(time.Second) / time.Second)
	if seconds <= 0 || seconds > MaxExpiresSeconds {
		return "", fmt.Errorf("presign: expires must be between 1 and %d seconds, got %d", MaxExpiresSeconds, seconds)
	}

	issuedAt = issuedAt.UTC()
	dateStamp := issuedAt.Format(DateFormat)

	query := u.Query()
	query.Set("X-Amz-Algorithm", SignatureAlgorithm)
	query.Set("X-Amz-Credential", fmt.Sprintf("%s/%s/%s/%s/aws4_request", s.AccessKey, dateStamp, s.Region, s.Service))
	query.Set("X-Amz-Date", issuedAt.Format(DateTimeFormat))
	query.Set("X-Amz-Expires", strconv.Itoa(seconds))
	query.Set("X-Amz-SignedHeaders", signedHostOnly)

	signature := calculateSignature(
		s.SecretKey,
		method,
		canonicalPath(u),
		query,
		map[string]string{"host": u.Host},
		issuedAt,
		dateStamp,
		s.Region,
		s.Service,
		signedHostOnly,
	)
	query.Set("X-Amz-Signature", signature)

	u.RawQuery = query.Encode()
	return u.String(), nil
}

// SignatureVerifier verifies AWS Signature V4 presigned URLs.
type SignatureVerifier struct {
	Region          string
	Service         string
	AccessKeyLookup func(accessKey string) (secretKey string, found bool)
	Now             func() time.Time
}

// NewSignatureVerifier creates a new signature verifier.
//
// Parameters:
//   - region: signing region (e.g., "us-east-1")
//   - service: signing service name (e.g., "s3")
//   - lookup: returns (secretKey, true) for a known access key, ("", false) otherwise
func NewSignatureVerifier(region, service string, lookup func(string) (string, bool)) *SignatureVerifier {
	return &SignatureVerifier{
		Region:          region,
		Service:         service,
		AccessKeyLookup: lookup,
		Now:             time.Now,
	}
}

// StaticCredentials returns an access key lookup holding a single key pair.
func StaticCredentials(accessKey, secretKey string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		if k == "" || k != accessKey {
			return "", false
		}
		return secretKey, true
	}
}

// VerifyRequest checks the presigned query of r against its method, path and
// host. Every failure wraps ErrInvalidCapability.
//
// Checks performed:
//  1. All X-Amz-* parameters present and well formed
//  2. Algorithm is AWS4-HMAC-SHA256
//  3. Not expired (now before X-Amz-Date + X-Amz-Expires)
//  4. Credential scope matches date, region and service
//  5. Access key is known
//  6. Signature matches
func (v *SignatureVerifier) VerifyRequest(r *http.Request) error {
	query := r.URL.Query()

	params, err := extractParams(query)
	if err != nil {
		return err
	}

	if err := v.validateParams(params); err != nil {
		return err
	}

	secretKey, found := v.AccessKeyLookup(params.accessKey)
	if !found {
		return fmt.Errorf("invalid access key: %w", ErrInvalidCapability)
	}

	headers := make(map[string]string)
	for _, name := range strings.Split(params.signedHeaders, ";") {
		if name == "host" {
			headers[name] = r.Host
			continue
		}
		headers[name] = r.Header.Get(name)
	}

	expected := calculateSignature(
		secretKey,
		r.Method,
		canonicalPath(r.URL),
		query,
		headers,
		params.requestTime,
		params.dateStamp,
		params.region,
		params.service,
		params.signedHeaders,
	)

	if !hmac.Equal([]byte(expected), []byte(params.signature)) {
		return fmt.Errorf("signature mismatch: %w", ErrInvalidCapability)
	}

	return nil
}

type signatureParams struct {
	algorithm     string
	accessKey     string
	dateStamp     string
	region        string
	service       string
	requestTime   time.Time
	expires       int
	signedHeaders string
	signature     string
}

func extractParams(query url.Values) (*signatureParams, error) {
	amzAlgorithm := query.Get("X-Amz-Algorithm")
	amzCredential := query.Get("X-Amz-Credential")
	amzDate := query.Get("X-Amz-Date")
	amzExpires := query.Get("X-Amz-Expires")
	amzSignedHeaders := query.Get("X-Amz-SignedHeaders")
	amzSignature := query.Get("X-Amz-Signature")

	if amzAlgorithm == "" || amzCredential == "" || amzDate == "" ||
		amzExpires == "" || amzSignedHeaders == "" || amzSignature == "" {
		return nil, fmt.Errorf("missing required signature parameters: %w", ErrInvalidCapability)
	}

	requestTime, err := time.Parse(DateTimeFormat, amzDate)
	if err != nil {
		return nil, fmt.Errorf("invalid X-Amz-Date format: %w", ErrInvalidCapability)
	}

	expires, err := strconv.Atoi(amzExpires)
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return nil, fmt.Errorf("invalid X-Amz-Expires: must be between 1 and %d: %w", MaxExpiresSeconds, ErrInvalidCapability)
	}

	credParts := strings.Split(amzCredential, "/")
	if len(credParts) != 5 {
		return nil, fmt.Errorf("invalid X-Amz-Credential format: %w", ErrInvalidCapability)
	}

	if credParts[4] != "aws4_request" {
		return nil, fmt.Errorf("invalid credential terminator: expected aws4_request: %w", ErrInvalidCapability)
	}

	return &signatureParams{
		algorithm:     amzAlgorithm,
		accessKey:     credParts[0],
		dateStamp:     credParts[1],
		region:        credParts[2],
		service:       credParts[3],
		requestTime:   requestTime,
		expires:       expires,
		signedHeaders: amzSignedHeaders,
		signature:     amzSignature,
	}, nil
}

func (v *SignatureVerifier) validateParams(params *signatureParams) error {
	if params.algorithm != SignatureAlgorithm {
		return fmt.Errorf("invalid algorithm: expected %s, got %s: %w", SignatureAlgorithm, params.algorithm, ErrInvalidCapability)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if now().After(params.requestTime.Add(time.Duration(params.expires) * time.Second)) {
		return fmt.Errorf("signature expired: %w", ErrInvalidCapability)
	}

	if params.dateStamp != params.requestTime.Format(DateFormat) {
		return fmt.Errorf("credential date mismatch: %w", ErrInvalidCapability)
	}

	if params.region != v.Region {
		return fmt.Errorf("region mismatch: expected %s, got %s: %w", v.Region, params.region, ErrInvalidCapability)
	}

	if params.service != v.Service {
		return fmt.Errorf("service mismatch: expected %s, got %s: %w", v.Service, params.service, ErrInvalidCapability)
	}

	return nil
}

func canonicalPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}

func calculateSignature(
	secretKey, method, path string,
	query url.Values,
	headers map[string]string,
	requestTime time.Time,
	dateStamp, region, service, signedHeaders string,
) string {
	canonicalRequest := buildCanonicalRequest(method, path, query, headers, signedHeaders)

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, region, service)
	stringToSign := buildStringToSign(requestTime, credentialScope, canonicalRequest)

	signingKey := deriveSigningKey(secretKey, dateStamp, region, service)

	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

func buildCanonicalRequest(method, path string, query url.Values, headers map[string]string, signedHeaders string) string {
	return strings.Join([]string{
		method,
		path,
		buildCanonicalQueryString(query),
		buildCanonicalHeaders(headers, signedHeaders),
		signedHeaders,
		unsignedPayload,
	}, "\n")
}

// buildCanonicalHeaders renders "name:value\n" for each signed header, sorted by name.
func buildCanonicalHeaders(headers map[string]string, signedHeaders string) string {
	names := strings.Split(signedHeaders, ";")
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(headers[name]))
		b.WriteByte('\n')
	}
	return b.String()
}

// buildCanonicalQueryString encodes every query parameter except the signature,
// sorted by key. Spaces are encoded as %20.
func buildCanonicalQueryString(query url.Values) string {
	params := url.Values{}
	for k, v := range query {
		if k != "X-Amz-Signature" {
			params[k] = v
		}
	}
	return strings.ReplaceAll(params.Encode(), "+", "%20")
}

func buildStringToSign(requestTime time.Time, credentialScope, canonicalRequest string) string {
	return strings.Join([]string{
		SignatureAlgorithm,
		requestTime.Format(DateTimeFormat),
		credentialScope,
		sha256Hash(canonicalRequest),
	}, "\n")
}

func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
