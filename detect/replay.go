package detect

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/LdDl/crossline/mot"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const maxLineSize = 10 << 20

// ReplaySource reads recorded detector output, one JSON document per frame:
//
//	{"frame": 12, "detections": [{"bbox": [x, y, width, height], "confidence": 0.93, "class": "person"}]}
//
// "frame" is optional: frames are numbered sequentially when it is missing.
// Empty lines are skipped.
type ReplaySource struct {
	scanner *bufio.Scanner
	next    int64
}

// NewReplaySource creates source reading frames from r
func NewReplaySource(r io.Reader) *ReplaySource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &ReplaySource{
		scanner: scanner,
	}
}

// NextFrame returns the next recorded frame. A line which can't be parsed yields
// frame with no detections together with error wrapping mot.ErrMalformedInput.
func (source *ReplaySource) NextFrame(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !source.scanner.Scan() {
			if err := source.scanner.Err(); err != nil {
				return Frame{}, errors.Wrap(err, "Can't read detections")
			}
			return Frame{}, io.EOF
		}
		line := bytes.TrimSpace(source.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		frame, err := parseFrame(line, source.next)
		source.next = frame.Index + 1
		return frame, err
	}
}

func parseFrame(line []byte, index int64) (Frame, error) {
	frame := Frame{Index: index}
	if !gjson.ValidBytes(line) {
		return frame, errors.Wrapf(mot.ErrMalformedInput, "frame %d: invalid JSON", index)
	}
	doc := gjson.ParseBytes(line)
	if idx := doc.Get("frame"); idx.Exists() {
		frame.Index = idx.Int()
	}
	items := doc.Get("detections").Array()
	detections := make([]Detection, 0, len(items))
	for i, item := range items {
		bbox := make([]float64, 0, 4)
		item.Get("bbox").ForEach(func(key, value gjson.Result) bool {
			bbox = append(bbox, value.Float())
			return true
		})
		if len(bbox) != 4 {
			return Frame{Index: frame.Index}, errors.Wrapf(mot.ErrMalformedInput, "frame %d: detection %d has %d bbox values, expected 4", frame.Index, i, len(bbox))
		}
		detections = append(detections, Detection{
			Box:        mot.NewRect(bbox[0], bbox[1], bbox[2], bbox[3]),
			Confidence: item.Get("confidence").Float(),
			Class:      item.Get("class").String(),
		})
	}
	frame.Detections = detections
	return frame, nil
}
