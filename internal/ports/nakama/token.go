package nakama

import (
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

// seatClaim is the verified result of a rejoin token.
type seatClaim struct {
	SessionID string
	UserID    string
	Seat      int
}

const defaultSeatTokenTTL = 2 * time.Hour

// issueSeatToken mints the token a client presents to reclaim its seat
// after a disconnect.
func issueSeatToken(secret, sessionID, userID string, seat int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("seat token secret is not configured")
	}
	claims := jwt.MapClaims{
		"sid":  sessionID,
		"sub":  userID,
		"seat": seat,
		"exp":  time.Now().Add(defaultSeatTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// parseSeatToken verifies a rejoin token and extracts its claim.
func parseSeatToken(secret, tokenString string) (seatClaim, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return seatClaim{}, fmt.Errorf("invalid seat token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return seatClaim{}, fmt.Errorf("invalid seat token claims")
	}
	sid, _ := claims["sid"].(string)
	sub, _ := claims["sub"].(string)
	seat, seatOK := claims["seat"].(float64)
	if sid == "" || sub == "" || !seatOK {
		return seatClaim{}, fmt.Errorf("seat token claims incomplete")
	}
	return seatClaim{SessionID: sid, UserID: sub, Seat: int(seat)}, nil
}
