package util

import (
	"encoding/json"
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoDuration 使用 ffprobe 读取视频时长（秒）
func VideoDuration(videoPath string) (float64, error) {
	out, err := ffmpeg.Probe(videoPath)
	if err != nil {
		return 0, fmt.Errorf("probe video: %w", err)
	}

	var result struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return 0, fmt.Errorf("parse probe output: %w", err)
	}

	// webm 录屏经常没有 duration 元数据
	if result.Format.Duration == "" || result.Format.Duration == "N/A" {
		return 0, nil
	}
	return strconv.ParseFloat(result.Format.Duration, 64)
}
