package room

import "errors"

// ErrRoomNotFound is returned when the requested room id is not live.
var ErrRoomNotFound = errors.New("room not found")

// ErrRoomFull is returned when a join would exceed the roster cap.
var ErrRoomFull = errors.New("room is full")

// ErrRaceInProgress is returned when a join targets a room past the lobby.
var ErrRaceInProgress = errors.New("race already started")

// ErrNotAuthorized is returned when a non-host invokes a host-only action.
var ErrNotAuthorized = errors.New("not authorized")

// ErrInvalidState is returned when an action is invalid for the room status.
var ErrInvalidState = errors.New("invalid room state")
