package pjlink

import (
	"crypto/md5" //nolint:gosec // PJLink mandates MD5 for its challenge digest
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Wire framing constants.
const (
	classPrefix    = "%1"
	lineTerminator = '\r'
	queryParam     = "?"

	greetingPrefix  = "PJLINK "
	greetingNoAuth  = "PJLINK 0"
	greetingAuth    = "PJLINK 1 "
	greetingAuthErr = "PJLINK ERRA"

	replyOK = "OK"
)

// Wire mnemonics.
const (
	mnemonicPower  = "POWR"
	mnemonicInput  = "INPT"
	mnemonicMute   = "AVMT"
	mnemonicErrors = "ERST"
	mnemonicLamp   = "LAMP"
	mnemonicInputs = "INST"
	mnemonicName   = "NAME"
	mnemonicManuf  = "INF1"
	mnemonicModel  = "INF2"
	mnemonicInfo   = "INFO"
	mnemonicClass  = "CLSS"
)

// encodeCommand builds one command line, without the auth digest.
func encodeCommand(mnemonic, param string) string {
	return classPrefix + mnemonic + " " + param + string(lineTerminator)
}

// authDigest computes the PJLink challenge response.
func authDigest(seed, password string) string {
	sum := md5.Sum([]byte(seed + password)) //nolint:gosec // protocol requirement
	return hex.EncodeToString(sum[:])
}

// parseGreeting interprets the first line the projector sends.
// It returns the auth seed, or "" when authentication is disabled.
func parseGreeting(line string) (seed string, auth bool, err error) {
	switch {
	case line == greetingNoAuth:
		return "", false, nil
	case strings.HasPrefix(line, greetingAuth):
		seed = strings.TrimSpace(strings.TrimPrefix(line, greetingAuth))
		if seed == "" {
			return "", false, fmt.Errorf("%w: empty auth seed", ErrConnectionFailed)
		}
		return seed, true, nil
	case line == greetingAuthErr:
		return "", false, ErrAuthFailed
	case strings.HasPrefix(line, greetingPrefix):
		return "", false, fmt.Errorf("%w: unsupported greeting %q", ErrConnectionFailed, line)
	default:
		return "", false, fmt.Errorf("%w: not a PJLink greeting %q", ErrConnectionFailed, line)
	}
}

// parseReply validates a reply line against the expected mnemonic and
// returns its parameter. Projector error codes come back as sentinel errors.
func parseReply(mnemonic, line string) (string, error) {
	if line == greetingAuthErr {
		return "", ErrAuthFailed
	}

	head := classPrefix + mnemonic + "="
	if !strings.HasPrefix(line, head) {
		return "", fmt.Errorf("%w: expected %s reply, got %q", ErrMalformedReply, mnemonic, line)
	}

	param := strings.TrimPrefix(line, head)
	if err, ok := replyErrors[param]; ok {
		return "", err
	}
	return param, nil
}

func decodePower(param string) (any, error) {
	code, err := strconv.Atoi(param)
	if err != nil || code < int(PowerOff) || code > int(PowerWarmingUp) {
		return nil, fmt.Errorf("%w: power state %q", ErrMalformedReply, param)
	}
	return PowerState(code), nil
}

func parseInput(code string) (Input, error) {
	if len(code) != 2 {
		return Input{}, fmt.Errorf("%w: input %q", ErrMalformedReply, code)
	}
	source, ok := inputSources[code[0]]
	if !ok {
		source = "UNKNOWN"
	}
	return Input{Code: code, Source: source, Channel: code[1:]}, nil
}

func decodeInput(param string) (any, error) {
	in, err := parseInput(param)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func decodeInputs(param string) (any, error) {
	fields := strings.Fields(param)
	inputs := make([]Input, 0, len(fields))
	for _, f := range fields {
		in, err := parseInput(f)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// decodeMute interprets an AVMT reply. 11 and 21 mute a single channel,
// 31 mutes both; any x0 code means nothing is muted.
func decodeMute(param string) (any, error) {
	switch param {
	case "11":
		return Mute{Video: true}, nil
	case "21":
		return Mute{Audio: true}, nil
	case "31":
		return Mute{Video: true, Audio: true}, nil
	case "10", "20", "30":
		return Mute{}, nil
	default:
		return nil, fmt.Errorf("%w: mute %q", ErrMalformedReply, param)
	}
}

// encodeMute returns the AVMT parameters needed to reach the given pair.
// Matching flags collapse into one 3x command; otherwise each channel is
// set explicitly.
func encodeMute(m Mute) []string {
	if m.Video == m.Audio {
		return []string{"3" + boolDigit(m.Video)}
	}
	return []string{"1" + boolDigit(m.Video), "2" + boolDigit(m.Audio)}
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodeErrors(param string) (any, error) {
	if len(param) != len(ErrorKeys) {
		return nil, fmt.Errorf("%w: error status %q", ErrMalformedReply, param)
	}
	report := ErrorReport{}
	for i, key := range ErrorKeys {
		switch param[i] {
		case '0':
		case '1':
			report[key] = SeverityWarning
		case '2':
			report[key] = SeverityError
		default:
			return nil, fmt.Errorf("%w: error status %q", ErrMalformedReply, param)
		}
	}
	return report, nil
}

// decodeLamps parses "hours on hours on ..." pairs.
func decodeLamps(param string) (any, error) {
	fields := strings.Fields(param)
	if len(fields) == 0 || len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: lamp status %q", ErrMalformedReply, param)
	}
	lamps := make([]Lamp, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		hours, err := strconv.Atoi(fields[i])
		if err != nil || hours < 0 {
			return nil, fmt.Errorf("%w: lamp hours %q", ErrMalformedReply, fields[i])
		}
		switch fields[i+1] {
		case "0", "1":
		default:
			return nil, fmt.Errorf("%w: lamp state %q", ErrMalformedReply, fields[i+1])
		}
		lamps = append(lamps, Lamp{On: fields[i+1] == "1", Hours: hours})
	}
	return lamps, nil
}

func decodeClass(param string) (any, error) {
	class, err := strconv.Atoi(param)
	if err != nil || class < 1 {
		return nil, fmt.Errorf("%w: class %q", ErrMalformedReply, param)
	}
	return class, nil
}

func decodeText(param string) (any, error) {
	return param, nil
}

// decodeOK accepts the confirmation of a set command. Confirmations carry no
// payload, so the reply value is nil.
func decodeOK(param string) (any, error) {
	if param != replyOK {
		return nil, fmt.Errorf("%w: expected OK, got %q", ErrMalformedReply, param)
	}
	return nil, nil
}

// validateInputCode checks a SetInput argument before it goes on the wire.
func validateInputCode(code string) error {
	if len(code) != 2 || code[0] < '1' || code[0] > '9' {
		return fmt.Errorf("%w: input code %q", ErrInvalidParameter, code)
	}
	c := code[1]
	if !(c >= '0' && c <= '9') && !(c >= 'A' && c <= 'Z') {
		return fmt.Errorf("%w: input code %q", ErrInvalidParameter, code)
	}
	return nil
}
