package uploader

import "math"

// Counts 一次提交的上传汇总，供进度提示展示
type Counts struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"` // 所有任务进度的平均值
}

// IsComplete 所有任务都到终态时为 true；空集合视为完成
func IsComplete(tasks []UploadTask) bool {
	for _, t := range tasks {
		if !t.IsTerminal() {
			return false
		}
	}
	return true
}

// Summarize 对注册表快照做一次汇总，按需重算，不做缓存
func Summarize(tasks []UploadTask) Counts {
	c := Counts{Total: len(tasks)}
	if len(tasks) == 0 {
		c.Percent = 100
		return c
	}

	sum := 0
	for _, t := range tasks {
		sum += t.Progress
		switch t.Status {
		case StatusSuccess:
			c.Succeeded++
		case StatusError:
			c.Failed++
		}
	}
	c.Percent = int(math.Round(float64(sum) / float64(len(tasks))))
	return c
}
