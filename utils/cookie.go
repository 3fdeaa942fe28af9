package utils

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AttributionCookieName is the cookie carrying the signed affiliate claim
const AttributionCookieName = "aff_ref"

// AttributionClaims is the signed payload of the attribution cookie
type AttributionClaims struct {
	AffiliateID string `json:"affiliateId"`
	jwt.StandardClaims
}

// SignAttribution produces a signed token claiming the visit for an affiliate,
// expiring after the configured number of days
func SignAttribution(affiliateID primitive.ObjectID, secret string, days int, now time.Time) (string, error) {
	claims := AttributionClaims{
		AffiliateID: affiliateID.Hex(),
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.AddDate(0, 0, days).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAttribution validates a token and returns the claimed affiliate id
func ParseAttribution(tokenString, secret string) (primitive.ObjectID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AttributionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return primitive.NilObjectID, err
	}

	claims, ok := token.Claims.(*AttributionClaims)
	if !ok || !token.Valid {
		return primitive.NilObjectID, errors.New("invalid attribution token")
	}

	return primitive.ObjectIDFromHex(claims.AffiliateID)
}

// SetAttributionCookie writes the signed attribution cookie on the response.
// HttpOnly keeps it out of reach of page scripts.
func SetAttributionCookie(c echo.Context, affiliateID primitive.ObjectID, secret string, days int) error {
	token, err := SignAttribution(affiliateID, secret, days, time.Now())
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     AttributionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().AddDate(0, 0, days),
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	c.SetCookie(cookie)
	return nil
}

// ReadAttributionCookie returns the affiliate id from a valid attribution
// cookie, or false when the cookie is absent, expired or tampered with
func ReadAttributionCookie(c echo.Context, secret string) (primitive.ObjectID, bool) {
	cookie, err := c.Cookie(AttributionCookieName)
	if err != nil || cookie.Value == "" {
		return primitive.NilObjectID, false
	}

	affiliateID, err := ParseAttribution(cookie.Value, secret)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return affiliateID, true
}
