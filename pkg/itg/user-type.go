package itg

import (
	"errors"
	"strconv"
)

// UserType selects the account role used for login
type UserType int

const (
	UserTypeTrader    UserType = 1
	UserTypeAdvisor   UserType = 6
	UserTypeQuotation UserType = 9

	userTypeTraderStr    = "trader"
	userTypeAdvisorStr   = "advisor"
	userTypeQuotationStr = "quotation"
)

func (ut UserType) String() string {
	switch ut {
	case UserTypeTrader:
		return userTypeTraderStr
	case UserTypeAdvisor:
		return userTypeAdvisorStr
	case UserTypeQuotation:
		return userTypeQuotationStr
	}
	return "unknown(" + strconv.Itoa(int(ut)) + ")"
}

// IsValid report known role code
func (ut UserType) IsValid() bool {
	return ut == UserTypeTrader || ut == UserTypeAdvisor || ut == UserTypeQuotation
}

// Domain return session domain served by the role
func (ut UserType) Domain() SessionDomain {
	if ut == UserTypeQuotation {
		return SessionQuot
	}
	return SessionTrade
}

func (ut UserType) MarshalJSON() ([]byte, error) {
	if !ut.IsValid() {
		return nil, errors.New("invalid user type json conversion: " + strconv.Itoa(int(ut)))
	}
	return []byte(strconv.Itoa(int(ut))), nil
}

func (ut *UserType) UnmarshalJSON(data []byte) error {
	val, err := strconv.Atoi(string(data))
	if err != nil || !UserType(val).IsValid() {
		return errors.New("unsupported user type: " + string(data))
	}
	*ut = UserType(val)
	return nil
}

func UserTypeStrToType(value string) (UserType, error) {
	switch value {
	case userTypeTraderStr:
		return UserTypeTrader, nil
	case userTypeAdvisorStr:
		return UserTypeAdvisor, nil
	case userTypeQuotationStr:
		return UserTypeQuotation, nil
	}
	return 0, errors.New("unsupported user type: " + value)
}
