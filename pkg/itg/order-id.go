package itg

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// OrderIdMaxLength is the longest order id the vendor accepts
const OrderIdMaxLength = 30

// OrderIdGenerate build order id from unix seconds and six random digits
func OrderIdGenerate() string {
	b := make([]byte, 4)
	_, err := rand.Read(b)
	if err != nil {
		panic(errors.New("fail get random for generate order id: " + err.Error()))
	}
	random := binary.LittleEndian.Uint32(b)%999999 + 1
	id := strconv.FormatInt(time.Now().Unix(), 10) + padDigits(strconv.FormatUint(uint64(random), 10), 6)
	if len(id) > OrderIdMaxLength {
		return id[:OrderIdMaxLength]
	}
	return id
}

func OrderIdGenerateFast(id int) string {
	return strconv.Itoa(id)
}

// CheckOrderId validate order id length
func CheckOrderId(id string) error {
	if id == "" {
		return errors.New("empty order id")
	}
	if len(id) > OrderIdMaxLength {
		return errors.New("too long order id: " + id)
	}
	return nil
}

// RequestIdGenerate return unique query correlation id
func RequestIdGenerate() string {
	return uuid.NewString()
}

func padDigits(val string, width int) string {
	for len(val) < width {
		val = "0" + val
	}
	return val
}
