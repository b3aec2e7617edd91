package batch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrInvalidInput is returned for missing, malformed or out-of-range input
var ErrInvalidInput = errors.New("invalid input")

// Banner is printed before reading the input from a terminal
const Banner = "Enter number of threads to time-out & max duration time-out duration:"

// ReadInput reads the thread count and the maximum duration as two
// whitespace-separated integers
func ReadInput(r io.Reader) (threads, maxDuration int, err error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func(name string) (int, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, fmt.Errorf("reading %s: %w", name, err)
			}
			return 0, fmt.Errorf("%w: missing %s", ErrInvalidInput, name)
		}
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return 0, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidInput, name, sc.Text())
		}
		return v, nil
	}

	if threads, err = next("thread count"); err != nil {
		return 0, 0, err
	}
	if maxDuration, err = next("max duration"); err != nil {
		return 0, 0, err
	}
	if err := Validate(threads, maxDuration); err != nil {
		return 0, 0, err
	}
	return threads, maxDuration, nil
}

// Validate checks threads >= 0 and maxDuration >= 1
func Validate(threads, maxDuration int) error {
	if threads < 0 {
		return fmt.Errorf("%w: thread count must be >= 0, got %d", ErrInvalidInput, threads)
	}
	if maxDuration < 1 {
		return fmt.Errorf("%w: max duration must be >= 1, got %d", ErrInvalidInput, maxDuration)
	}
	return nil
}
