package uploader

import "testing"

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name  string
		tasks []UploadTask
		want  bool
	}{
		{
			name:  "空集合视为完成",
			tasks: nil,
			want:  true,
		},
		{
			name: "全部成功",
			tasks: []UploadTask{
				{Status: StatusSuccess},
				{Status: StatusSuccess},
			},
			want: true,
		},
		{
			name: "成功与失败混合也算完成",
			tasks: []UploadTask{
				{Status: StatusSuccess},
				{Status: StatusError},
			},
			want: true,
		},
		{
			name: "有 pending 未完成",
			tasks: []UploadTask{
				{Status: StatusSuccess},
				{Status: StatusPending},
			},
			want: false,
		},
		{
			name: "有 uploading 未完成",
			tasks: []UploadTask{
				{Status: StatusUploading},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsComplete(tt.tasks); got != tt.want {
				t.Errorf("IsComplete() = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	tasks := []UploadTask{
		{Status: StatusSuccess, Progress: 100},
		{Status: StatusError, Progress: 30},
		{Status: StatusUploading, Progress: 50},
		{Status: StatusPending, Progress: 0},
	}

	c := Summarize(tasks)
	if c.Succeeded != 1 || c.Failed != 1 || c.Total != 4 {
		t.Errorf("汇总错误: %+v", c)
	}
	if c.Percent != 45 {
		t.Errorf("平均进度应为 45，得到 %d", c.Percent)
	}
}

func TestSummarize_Empty(t *testing.T) {
	c := Summarize(nil)
	if c.Total != 0 || c.Percent != 100 {
		t.Errorf("空集合汇总错误: %+v", c)
	}
}
