package tracker

import "errors"

// ErrDuplicateCourse is returned when a course with the same URL is already tracked.
var ErrDuplicateCourse = errors.New("tracker: course with this URL already tracked")

// ErrCourseNotFound is returned when a course ID resolves to nothing.
var ErrCourseNotFound = errors.New("tracker: course not found")

// ErrInvalidInput is returned when course or credential input fails validation.
var ErrInvalidInput = errors.New("tracker: invalid input")
