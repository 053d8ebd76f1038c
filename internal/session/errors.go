package session

import "errors"

// ErrNameOccupied is returned by Rename when new_name is held by another
// live entry with a different session_id.
var ErrNameOccupied = errors.New("name_occupied")
