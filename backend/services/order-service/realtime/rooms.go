package realtime

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	shopRoomPrefix     = "shop_"
	customerRoomPrefix = "user_"
)

func RoomForShop(shopID int64) string {
	return shopRoomPrefix + strconv.FormatInt(shopID, 10)
}

func RoomForCustomer(customerID int64) string {
	return customerRoomPrefix + strconv.FormatInt(customerID, 10)
}

// ValidateRoom accepts only names RoomForShop or RoomForCustomer can produce.
func ValidateRoom(room string) error {
	var rest string
	switch {
	case strings.HasPrefix(room, shopRoomPrefix):
		rest = strings.TrimPrefix(room, shopRoomPrefix)
	case strings.HasPrefix(room, customerRoomPrefix):
		rest = strings.TrimPrefix(room, customerRoomPrefix)
	default:
		return fmt.Errorf("unknown room %q", room)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 || strconv.FormatInt(id, 10) != rest {
		return fmt.Errorf("invalid room id in %q", room)
	}
	return nil
}
